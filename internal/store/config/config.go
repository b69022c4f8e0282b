package config

type Config struct {
	DatabaseURI string
}
