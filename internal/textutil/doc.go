// Package textutil normalizes the free text that flows from catalog files into
// captions and validates video identifiers before they become path segments.
package textutil
