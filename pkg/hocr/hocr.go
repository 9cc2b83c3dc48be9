// Package hocr parses hOCR, the HTML-based format OCR engines such as
// Tesseract and Document AI converters use to describe recognized text
// together with its position on the page.
//
// Only the parts of the hierarchy needed to locate text are kept: every
// 'ocr_page' becomes a Page holding its 'ocr_line' elements in document
// order, and every line holds its 'ocrx_word' elements with their bounding
// boxes. Content areas and paragraphs are walked through but not retained.
//
// Key Types:
//
// - HOCR: Top-level structure representing an entire hOCR document
// - Page: A page with class 'ocr_page'
// - Line: A line of text with class 'ocr_line' (or 'ocrx_line', 'ocr_caption', ...)
// - Word: A single word with class 'ocrx_word'
// - BoundingBox: A rectangle in page pixel coordinates
//
// Main Functions:
//
// - ParseHOCR: Parses hOCR data from HTML into the object model
// - Page.Layout: Converts a page into a searchable text layout
package hocr
