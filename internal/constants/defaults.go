package constants

// Default server configuration values
const (
	DefaultServerPort            = 3002
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	DefaultCORSOrigin            = "*"
)

// Default store configuration values
const (
	DefaultMongoDatabase      = "whatsapp"
	DefaultMongoCollection    = "processed_messages"
	DefaultMongoConnectSec    = 10
	DefaultStoreRetryAttempts = 3
)

// Default retry/backoff values for store bring-up
const (
	DefaultRetryBackoffMs = 1000
	DefaultMaxBackoffMs   = 60000
)

// Websocket hub values
const (
	DefaultClientSendBuffer      = 32
	DefaultClientWriteTimeoutSec = 10
)

// Outbound messages composed locally carry this sender identifier.
const BusinessSender = "business"
