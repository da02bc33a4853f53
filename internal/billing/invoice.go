package billing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FormatInvoiceKey renders the {year}-{uid}-{sequence} collection key.
func FormatInvoiceKey(year int, uid int64, seq int) string {
	return fmt.Sprintf("%d-%d-%d", year, uid, seq)
}

// InvoiceSequence extracts the per-student sequence from an invoice key.
func InvoiceSequence(key string) (int, error) {
	idx := strings.LastIndex(key, "-")
	if idx < 0 || idx == len(key)-1 {
		return 0, fmt.Errorf("invoice key %q has no sequence", key)
	}
	seq, err := strconv.Atoi(key[idx+1:])
	if err != nil || seq < 1 {
		return 0, fmt.Errorf("invoice key %q has invalid sequence", key)
	}
	return seq, nil
}

// SortInvoiceKeysDesc orders keys by their digits read as one integer,
// largest first. Keys that are not all digits once hyphens are removed sort
// last, in their original relative order.
func SortInvoiceKeysDesc(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := invoiceDigits(keys[i])
		b, bok := invoiceDigits(keys[j])
		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a > b
	})
}

// NextInvoiceKey returns the key for a student's next payment. The sequence
// continues from the student's highest existing key even when the year
// prefix changes.
func NextInvoiceKey(now time.Time, uid int64, existing []string) string {
	keys := append([]string(nil), existing...)
	SortInvoiceKeysDesc(keys)
	next := 1
	for _, key := range keys {
		seq, err := InvoiceSequence(key)
		if err != nil {
			continue
		}
		next = seq + 1
		break
	}
	return FormatInvoiceKey(now.Year(), uid, next)
}

// DefaultReceiptNo is the receipt number shown for a new collection.
func DefaultReceiptNo(invoiceKey, roomName string) string {
	return fmt.Sprintf("%s (%s)", invoiceKey, roomName)
}

// FormatBillKey renders the path key of a bill row.
func FormatBillKey(uid int64, year, month int) string {
	return fmt.Sprintf("%d-%d-%d", uid, year, month)
}

// ParseBillKey splits a {uid}-{year}-{month} bill key.
func ParseBillKey(key string) (uid int64, year, month int, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("bill key %q must look like uid-year-month", key)
	}
	if uid, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("bill key %q: invalid uid", key)
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, fmt.Errorf("bill key %q: invalid year", key)
	}
	if month, err = strconv.Atoi(parts[2]); err != nil || month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("bill key %q: invalid month", key)
	}
	return uid, year, month, nil
}

// invoiceDigits strips hyphens and leading zeros. ok is false when anything
// other than digits remains.
func invoiceDigits(key string) (string, bool) {
	digits := strings.ReplaceAll(key, "-", "")
	if digits == "" {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return strings.TrimLeft(digits, "0"), true
}
