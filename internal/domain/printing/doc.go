// Package printing holds the paper and page geometry value objects used when
// a sale receipt is laid out for a thermal printer or exported as PDF.
package printing
