package config

type Config struct {
	// GatewayAddr is the base address of the mail gateway. Empty
	// disables receipt mail.
	GatewayAddr string
	FromAddress string
}
