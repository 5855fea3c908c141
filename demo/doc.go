// Package demo holds small example payloads and the pipelines run by
// "provctl demo". They double as end-to-end fixtures for the ledger and CLI
// tests.
package demo
