// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package catalog

// Rating buckets, most to least favorable. The superlative buckets on
// both ends require review volume as well as ratio; without the volume a
// borderline item resolves to the more conservative neighbor.
const (
	RatingOverwhelminglyPositive = "Overwhelmingly Positive"
	RatingVeryPositive           = "Very Positive"
	RatingMostlyPositive         = "Mostly Positive"
	RatingPositive               = "Positive"
	RatingMixed                  = "Mixed"
	RatingMostlyNegative         = "Mostly Negative"
	RatingNegative               = "Negative"
	RatingVeryNegative           = "Very Negative"
	RatingOverwhelminglyNegative = "Overwhelmingly Negative"
)

// RatingOrder lists every bucket most-favorable first. The compact catalog
// export encodes each item's bucket as an index into this list.
var RatingOrder = []string{
	RatingOverwhelminglyPositive,
	RatingVeryPositive,
	RatingMostlyPositive,
	RatingPositive,
	RatingMixed,
	RatingMostlyNegative,
	RatingNegative,
	RatingVeryNegative,
	RatingOverwhelminglyNegative,
}

// RatingIndex returns the position of a bucket in RatingOrder.
// Unknown buckets map to Mixed.
func RatingIndex(rating string) int {
	for i, r := range RatingOrder {
		if r == rating {
			return i
		}
	}
	return 4 // Mixed
}

// ClassifyRating maps positive/negative review counts to a rating bucket
// via an ordered threshold table. Pure function; callers with zero total
// reviews should not call it (the loader skips such rows).
func ClassifyRating(positive, negative int) string {
	reviews := positive + negative
	if reviews < 1 {
		return RatingNegative
	}
	ratio := float64(positive) / float64(reviews)

	switch {
	case ratio >= 0.95 && reviews >= 500:
		return RatingOverwhelminglyPositive
	case ratio >= 0.80 && reviews >= 50:
		return RatingVeryPositive
	case ratio >= 0.70:
		return RatingMostlyPositive
	case ratio >= 0.40:
		return RatingMixed
	case ratio >= 0.20:
		return RatingMostlyNegative
	case reviews >= 500:
		return RatingOverwhelminglyNegative
	case reviews >= 50:
		return RatingVeryNegative
	default:
		return RatingNegative
	}
}
