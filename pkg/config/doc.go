// Package config loads softchar process configuration.
//
// Settings come from three layers, later ones winning:
//
//  1. Built-in defaults ([Default]): major 228, minors 0-4, 256-byte rings,
//     clamp overflow, replay reads, nodes named /dev/simpleCharDevice{N}
//  2. A YAML file ([Load])
//  3. SOFTCHAR_* environment variables
//
// Example file:
//
//	driver:
//	  capacity: 4096
//	  overflow: error
//	  read_mode: stream
//	nodes:
//	  prefix: /dev/ring
//	  count: 2
//	logging:
//	  level: debug
//	  format: json
//
// [Config.Validate] reports every problem it finds, not just the first.
package config
