// Package config loads typed configuration from environment variables.
//
// Structs describe their variables with github.com/caarlos0/env tags. An
// optional .env file in the working directory is read once through
// github.com/joho/godotenv before the first parse.
//
//	cfg, err := config.Load[auth.Config]()
//	pg := config.MustLoad[pg.Config]()
package config
