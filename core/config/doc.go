// Package config loads typed configuration from the process environment
// using `env` struct tags, applying a .env file from the working
// directory first when one exists. Variables already present in the
// environment win over the file.
//
// Usage:
//
//	type serverConfig struct {
//		Addr   string `env:"SERVER_ADDR" envDefault:":8080"`
//		Secret string `env:"RELAY_SECRET,required"`
//	}
//
//	var cfg serverConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	// Or abort on a bad environment at startup:
//	config.MustLoad(&cfg)
package config
