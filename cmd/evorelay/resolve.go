package main

import (
	"fmt"
	"sort"
	"strings"
)

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(" ", "_", "-", "_")
	name = replacer.Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

// resolveZone accepts a zone id or a zone name in any casing or spacing.
func resolveZone(input string, zones map[string]string) (string, error) {
	if _, ok := zones[input]; ok {
		return input, nil
	}
	needle := normalizeName(input)
	for id, name := range zones {
		if normalizeName(name) == needle {
			return id, nil
		}
	}
	available := make([]string, 0, len(zones))
	for _, name := range zones {
		available = append(available, name)
	}
	sort.Strings(available)
	return "", fmt.Errorf("zone %q not found. Available: %s", input, strings.Join(available, ", "))
}
