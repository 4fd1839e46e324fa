package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// Codes by category:
//
//	DB001-DB007    store constraint and connectivity failures
//	VAL001-VAL004  row validation and the pre-commit gate
//	FILE001-FILE008 upload, format and extraction problems
//	TAX001-TAX002  taxonomy creation failures
//	IMP001-IMP004  import lifecycle (busy, cancelled, timed out)
//	IMG001-IMG003  image uploads
//	RATE001        request throttling
//	REQ001-REQ002  malformed requests and disabled features
//	ERR000         anything else; check the logs for the original error
//
// Typed errors are matched first with errors.Is / errors.As. Everything
// else falls through to case-insensitive substring patterns, first match
// wins, so specific patterns must precede general ones.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalog/internal/tabular"
)

// UserMessage is user-facing error text with a support code.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgGate = UserMessage{
		Message: "Some rows failed validation, nothing was imported",
		Action:  "Fix the listed rows or import with partial commits allowed",
		Code:    "VAL004",
	}
	msgNoRows = UserMessage{
		Message: "The file has no product rows",
		Action:  "Add at least one row below the header row",
		Code:    "FILE008",
	}
	msgUnsupported = UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a .csv, .tsv or .xlsx file",
		Code:    "FILE007",
	}
	msgSheetNotFound = UserMessage{
		Message: "The selected sheet does not exist in this workbook",
		Action:  "Pick one of the sheets listed for the file",
		Code:    "FILE006",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row and product rows",
		Code:    "FILE005",
	}
	msgParse = UserMessage{
		Message: "The file could not be read as a spreadsheet",
		Action:  "Re-export the file as CSV or XLSX and try again",
		Code:    "FILE002",
	}
	msgBrandCreate = UserMessage{
		Message: "New brands could not be created, nothing was imported",
		Action:  "Please try again; check brand names for unusual characters",
		Code:    "TAX001",
	}
	msgCategoryCreate = UserMessage{
		Message: "New categories could not be created, nothing was imported",
		Action:  "Please try again; check category names for duplicates",
		Code:    "TAX002",
	}
	msgBusy = UserMessage{
		Message: "The system is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}
)

var errorPatterns = []errorPattern{
	// Store constraints
	{"duplicate key", UserMessage{"A record with this ID already exists", "Check the file for rows that were already imported", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate values", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced brand or category does not exist", "Re-run the import so taxonomy is recreated", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced brand or category does not exist", "Re-run the import so taxonomy is recreated", "DB003"}},

	// Store connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"database is locked", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Row validation
	{"title is required", UserMessage{"A product title is missing", "Fill in the title column for every row", "VAL001"}},
	{"valid price is required", UserMessage{"A product price is missing or invalid", "Use a positive number without currency symbols", "VAL002"}},
	{"original price must be greater", UserMessage{"Original price must be above the price", "Leave original price blank or raise it", "VAL003"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller files", "FILE001"}},
	{"invalid csv", UserMessage{"File is not valid delimited text", "Check quoting and delimiters, then re-export", "FILE002"}},
	{"invalid workbook", msgParse},
	{"no file provided", UserMessage{"No file was selected", "Please select a spreadsheet to upload", "FILE004"}},
	{"empty file", msgEmptyFile},

	// Import lifecycle
	{"too many imports", msgBusy},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP002"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "IMP003"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},

	// Images
	{"unsupported image type", UserMessage{"This image type is not supported", "Upload a JPEG, PNG, GIF or WebP image", "IMG001"}},
	{"image too large", UserMessage{"The image exceeds the maximum size", "Upload a smaller image", "IMG003"}},
	{"image storage", UserMessage{"The image could not be stored", "Please try again later", "IMG002"}},

	// Requests
	{"invalid request", UserMessage{"The request is invalid", "Check the request fields and try again", "REQ001"}},
	{"feature not configured", UserMessage{"This feature is not enabled on this server", "Contact your administrator", "REQ002"}},

	// Throttling
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a UserMessage. A nil error maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		gate  *GateError
		taxon *TaxonomyCreationError
		perr  *tabular.ParseError
	)
	switch {
	case errors.As(err, &gate):
		return msgGate
	case errors.As(err, &taxon):
		if taxon.Kind == "category" {
			return msgCategoryCreate
		}
		return msgBrandCreate
	case errors.Is(err, ErrNoRows):
		return msgNoRows
	case errors.Is(err, ErrTooManyImports):
		return msgBusy
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		return msgUnsupported
	case errors.Is(err, tabular.ErrSheetNotFound):
		return msgSheetNotFound
	case errors.Is(err, tabular.ErrEmptyFile):
		return msgEmptyFile
	case errors.As(err, &perr):
		return msgParse
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError wraps err with its mapped message. It returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
