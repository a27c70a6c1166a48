// cmd/api/config.go
// This file builds serverConfig from command-line flags. Every flag takes its
// default from a BOOKS_* environment variable so a .env file can configure
// the process without arguments.
package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/aoideee/bookshelf/internal/validator"
)

// serverConfig holds all the values that can be tweaked at startup.
type serverConfig struct {
	host        string // Interface the HTTP server binds to
	port        int    // TCP port the HTTP server listens on (default 5000)
	debug       bool   // Enables DEBUG logging, including per-request lines
	environment string // Runtime environment: development, staging, or production
	db          struct {
		dsn string // SQLite file path, or a postgres:// URL
	}
	limiter struct {
		enabled bool    // Per-IP rate limiting on or off
		rps     float64 // Tokens added per second
		burst   int     // Bucket capacity
	}
}

// loadConfig parses args over defaults read through getenv and validates the
// result. Malformed environment values and field constraint failures are all
// reported together.
func loadConfig(args []string, getenv func(string) string) (serverConfig, error) {
	var settings serverConfig
	v := validator.New()

	env := envReader{getenv: getenv, v: v}

	fs := flag.NewFlagSet("bookshelf", flag.ContinueOnError)
	fs.StringVar(&settings.host, "host", env.getString("BOOKS_HOST", "127.0.0.1"), "Server host")
	fs.IntVar(&settings.port, "port", env.getInt("BOOKS_PORT", 5000), "Server port")
	fs.BoolVar(&settings.debug, "debug", env.getBool("BOOKS_DEBUG", false), "Debug mode")
	fs.StringVar(&settings.environment, "env", env.getString("BOOKS_ENV", "development"), "Environment(development|staging|production)")
	fs.StringVar(&settings.db.dsn, "db-dsn", env.getString("BOOKS_DB_DSN", "books.db"), "SQLite file path or PostgreSQL URL")
	fs.BoolVar(&settings.limiter.enabled, "limiter-enabled", env.getBool("BOOKS_LIMITER_ENABLED", false), "Enable rate limiter")
	fs.Float64Var(&settings.limiter.rps, "limiter-rps", env.getFloat("BOOKS_LIMITER_RPS", 2), "Rate limiter maximum requests per second")
	fs.IntVar(&settings.limiter.burst, "limiter-burst", env.getInt("BOOKS_LIMITER_BURST", 4), "Rate limiter maximum burst")

	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}
	if fs.NArg() > 0 {
		v.AddError("args", fmt.Sprintf("unexpected argument %q", fs.Arg(0)))
	}

	v.Check(settings.port >= 1 && settings.port <= 65535, "port", "must be between 1 and 65535")
	v.Check(validator.In(settings.environment, "development", "staging", "production"), "env", "must be development, staging or production")
	v.Check(settings.db.dsn != "", "db-dsn", "must be provided")
	if settings.limiter.enabled {
		v.Check(settings.limiter.rps > 0, "limiter-rps", "must be greater than zero")
		v.Check(settings.limiter.burst > 0, "limiter-burst", "must be greater than zero")
	}

	if err := v.Err(); err != nil {
		return serverConfig{}, err
	}
	return settings, nil
}

// envReader reads typed defaults from the environment. A value that does not
// parse is recorded on v and the code default is used.
type envReader struct {
	getenv func(string) string
	v      *validator.Validator
}

func (e envReader) getString(key, def string) string {
	if s := e.getenv(key); s != "" {
		return s
	}
	return def
}

func (e envReader) getInt(key string, def int) int {
	s := e.getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		e.v.AddError(key, fmt.Sprintf("not a number: %q", s))
		return def
	}
	return n
}

func (e envReader) getFloat(key string, def float64) float64 {
	s := e.getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		e.v.AddError(key, fmt.Sprintf("not a number: %q", s))
		return def
	}
	return f
}

func (e envReader) getBool(key string, def bool) bool {
	s := e.getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		e.v.AddError(key, fmt.Sprintf("not a boolean: %q", s))
		return def
	}
	return b
}
