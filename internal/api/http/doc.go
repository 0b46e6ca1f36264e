// Package http exposes the plugin host over a JSON API.
//
// Routes are grouped by resource: /packages manages installs, /sources/:id
// calls into a content source and /trackers/:id drives tracker login and
// history. Calls whose guest function returned nothing answer 404.
package http
