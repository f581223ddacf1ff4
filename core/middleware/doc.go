// Package middleware contains HTTP middleware for the Fiber application.
//
//   - auth: API key validation for the operator endpoints.
//   - rayid: assigns every request a ray id, stored in locals and echoed in
//     the X-Ray-ID response header.
package middleware
