// Package config loads runtime configuration for the gophauth CLI.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Environment variables named in the Config struct tags.
//  4. Command-line flags: -a address, -t request timeout, -i online check interval.
//
// JSON example:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "request_timeout": "15s",
//	  "online_check_interval": "5s"
//	}
package config
