// Package api defines the JSON types exchanged between the daemon's HTTP
// server and its clients, plus converters from the catalog's internal models.
package api
