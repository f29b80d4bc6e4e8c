// Package config holds the crawl settings: built-in defaults, the optional
// .onioncrawl.yaml file, and validation of the merged result.
package config
