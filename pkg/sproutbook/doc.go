// Package sproutbook provides a client for the Sproutbook web API.
//
// This package includes:
//   - A configurable HTTP client with session headers and typed errors
//   - Tolerant models for the note feed and its media attachments
//   - Timestamp resolution across the vendor's synonym fields
//   - Helper functions for constructing API endpoints
//
// Example usage:
//
//	client := sproutbook.NewClient("", 30*time.Second, nil)
//	client.SetSession(cookie, accountID, userAgent)
//
//	enrollments, err := client.FetchEnrollments(accountID)
//	if err != nil {
//	    var apiErr *errors.Error
//	    if stderrors.As(err, &apiErr) {
//	        switch apiErr.Type {
//	        case errors.ErrorTypeAuth:
//	            // Session expired, re-authenticate
//	        case errors.ErrorTypeRateLimit:
//	            // Back off and retry
//	        }
//	    }
//	}
//
//	notes, err := client.FetchNotesPage(enrollmentID, cursor, 100, nil)
package sproutbook
