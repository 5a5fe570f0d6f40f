package org

import "errors"

var (
	ErrNotFound       = errors.New("organization not found")
	ErrHierarchyCycle = errors.New("organization hierarchy contains a cycle")
)
