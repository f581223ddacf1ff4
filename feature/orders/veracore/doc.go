// Package veracore reads open orders from the VeraCore public API.
//
// The feed logs in for a bearer token, starts the configured report, polls
// until it is generated and collects the order id column.
package veracore
