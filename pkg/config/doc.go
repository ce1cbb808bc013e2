// Package config loads typed configuration structs from environment
// variables with github.com/caarlos0/env, optionally seeded from dotenv
// files through github.com/joho/godotenv.
//
// Every component package declares its own Config struct with `env` tags;
// the service binary composes them and calls Load once per struct.
package config
