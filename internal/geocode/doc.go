// Package geocode resolves GPS coordinates to place names through a
// Nominatim-compatible reverse geocoding service.
package geocode
