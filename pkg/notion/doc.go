// Package notion is a small client for the Notion REST API and a delivery
// sink that saves extracted content as database pages.
//
// Every HTTP call can be routed through a queue.Queue so that all traffic to
// Notion shares one pacing budget and one rate-limit backoff.
package notion
