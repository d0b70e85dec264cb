// Package http exposes the package manager over a JSON API.
//
// Queries answer immediately. Install and uninstall wait for the terminal
// result until the request deadline; a caller that gives up receives the
// transaction id with Pending set and the transaction keeps running.
//
// Routes:
//   - GET    /health
//   - GET    /packages?view=all|names|summary&match=<glob>
//   - GET    /packages/:name
//   - GET    /packages/:name/stats
//   - POST   /packages/:name/clear-cache
//   - POST   /packages/install
//   - DELETE /packages/:name?clear_data=true
//   - GET    /first-boot
//   - GET    /stats
package http
