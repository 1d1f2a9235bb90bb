package main

import (
	"log"
	"strconv"
	"strings"
)

// miscellaneous utility functions

func firstElementOf(s []string) string {
	// return first element of slice, or blank string if empty
	val := ""

	if len(s) > 0 {
		val = s[0]
	}

	return val
}

func sliceContainsString(haystack []string, needle string, insensitive bool) bool {
	if len(haystack) == 0 {
		return false
	}

	for _, item := range haystack {
		a := item
		b := needle

		if insensitive == true {
			a = strings.ToLower(item)
			b = strings.ToLower(needle)
		}

		if a == b {
			return true
		}
	}

	return false
}

func sliceContainsAnyValueFromSlice(haystack []string, needles []string, insensitive bool) bool {
	if len(haystack) == 0 || len(needles) == 0 {
		return false
	}

	for _, needle := range needles {
		if sliceContainsString(haystack, needle, insensitive) == true {
			return true
		}
	}

	return false
}

func restrictValue(field string, val int, min int, fallback int) int {
	// default, if requested value isn't large enough
	res := fallback

	if val >= min {
		res = val
	} else {
		log.Printf(`value for "%s" is less than the minimum allowed value %d; defaulting to %d`, field, min, fallback)
	}

	return res
}

func nonemptyValues(val []string) []string {
	res := []string{}

	for _, s := range val {
		if s != "" {
			res = append(res, s)
		}
	}

	return res
}

func uniqueStrings(s []string) []string {
	var uniq []string

	seen := make(map[string]bool)

	for _, val := range s {
		if seen[val] == false {
			uniq = append(uniq, val)
			seen[val] = true
		}
	}

	return uniq
}

func stringSet(s []string) map[string]bool {
	set := make(map[string]bool, len(s))

	for _, val := range s {
		set[val] = true
	}

	return set
}

func integerWithMinimum(str string, min int) int {
	val, err := strconv.Atoi(str)

	// fallback for invalid or nonsensical values
	if err != nil || val < min {
		val = min
	}

	return val
}
