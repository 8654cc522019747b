package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/byterange"
	"github.com/dmitrijs2005/filekeeper/internal/client/api"
	"github.com/dmitrijs2005/filekeeper/internal/client/config"
	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/google/uuid"
)

const usage = `usage:
  client [flags] upload <path> [-m mime] [-resume id]
  client [flags] download <id> <out> [-r "bytes=0-99"]
  client [flags] info <id>
  client [flags] delete <id>`

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	c := api.New(cfg.ServerURL, cfg.Token, cfg.Timeout)

	args := flagx.Positionals(os.Args[1:], config.ValueFlags)
	if len(args) == 0 {
		log.Fatal(usage)
	}

	var err error
	switch args[0] {
	case "upload":
		err = upload(ctx, c, cfg, args[1:])
	case "download":
		err = download(ctx, c, args[1:])
	case "info":
		err = info(ctx, c, args[1:])
	case "delete":
		err = remove(ctx, c, args[1:])
	default:
		log.Fatal(usage)
	}

	if err != nil {
		log.Fatalf("%v", err)
	}
}

// commandFlags parses the subcommand flags -m, -resume and -r.
func commandFlags() (mime, resume, rng string) {
	fs := flag.NewFlagSet("command", flag.ContinueOnError)
	fs.StringVar(&mime, "m", "", "declared MIME type")
	fs.StringVar(&resume, "resume", "", "staging file id to resume")
	fs.StringVar(&rng, "r", "", "byte range")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-m", "-resume", "-r"})); err != nil {
		log.Fatalf("%v", err)
	}
	return mime, resume, rng
}

func upload(ctx context.Context, c *api.Client, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("upload needs a path\n%s", usage)
	}
	mime, resume, _ := commandFlags()
	u := api.NewUploader(c, cfg.ChunkSize, cfg.Retries)

	var declared *string
	if mime != "" {
		declared = &mime
	}

	if resume != "" {
		id, err := uuid.Parse(resume)
		if err != nil {
			return err
		}
		f, err := u.ResumeFile(ctx, id, args[0])
		if err != nil {
			return err
		}
		return printJSON(f)
	}

	f, err := u.UploadFile(ctx, args[0], declared)
	if err != nil {
		return err
	}
	return printJSON(f)
}

func download(ctx context.Context, c *api.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("download needs an id and an output path\n%s", usage)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return err
	}
	_, _, header := commandFlags()
	rng, err := byterange.Parse(header)
	if err != nil {
		return err
	}

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}

	n, err := c.Download(ctx, id, rng, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Printf("%d bytes written to %s\n", n, args[1])
	return nil
}

func info(ctx context.Context, c *api.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("info needs an id\n%s", usage)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return err
	}
	f, err := c.GetFile(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(f)
}

func remove(ctx context.Context, c *api.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete needs an id\n%s", usage)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return err
	}
	return c.DeleteFile(ctx, id)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
