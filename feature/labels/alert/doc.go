// Package alert notifies operators about conflicts, orphans and failures.
package alert
