// Package orders exposes the orders mirrored from the order feed and lets an
// operator reopen orders held after a conflict or terminal failure.
//
// The veracore subpackage is the order feed client.
package orders
