package org

const (
	LevelGlobal      = "GLOBAL"
	LevelDirectorate = "DIRECTORATE"
	LevelDepartment  = "DEPARTMENT"
	LevelUnit        = "UNIT"
)

// maxTreeDepth bounds every hierarchy walk. The organization tree is a
// strict tree by construction, so hitting the bound means corrupted
// parent pointers, not a legitimate deep hierarchy.
const maxTreeDepth = 64
