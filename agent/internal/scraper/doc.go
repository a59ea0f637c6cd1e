// Package scraper reads fridgekeep-server's Prometheus /metrics endpoint and
// condenses the store and sweeper series into a Stats summary. fridgectl uses
// it for the `stats` command.
package scraper
