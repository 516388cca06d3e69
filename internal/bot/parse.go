package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"newsbot/internal/model"
)

var errEmptyArgs = errors.New("argument is required")

// ParseCategoryList splits a "/categories" argument on commas and spaces
// and normalizes the names.
func ParseCategoryList(args string) ([]string, error) {
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	cats := model.NormalizeCategories(fields)
	if len(cats) == 0 {
		return nil, errEmptyArgs
	}
	return cats, nil
}

// ParseToggle accepts on/off style arguments.
func ParseToggle(args string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on", "yes", "true", "1", "enable":
		return true, nil
	case "off", "no", "false", "0", "disable":
		return false, nil
	case "":
		return false, errEmptyArgs
	default:
		return false, fmt.Errorf("expected on or off, got %q", args)
	}
}

// ParseTimeArg parses a "/time" argument. "off" clears the delivery time
// and is returned as "".
func ParseTimeArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	switch strings.ToLower(s) {
	case "":
		return "", errEmptyArgs
	case "off", "none", "disable":
		return "", nil
	}
	h, m, err := model.ParseClock(s)
	if err != nil {
		return "", err
	}
	return model.FormatClock(h, m), nil
}

// ParseLimitArg parses a "/limit" argument.
func ParseLimitArg(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, errEmptyArgs
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}
