package common

const (
	// OffsetHeaderName carries the byte offset of a staging chunk write.
	OffsetHeaderName = "Offset"

	// AuthorizationHeaderName carries the bearer access token.
	AuthorizationHeaderName = "Authorization"

	// DefaultMimeType is used when neither the declared type nor content
	// sniffing yields a MIME type.
	DefaultMimeType = "application/octet-stream"
)
