package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Семантические
	SemaInfo              Code = 3000
	SemaError             Code = 3001
	SemaRedefinition      Code = 3002
	SemaUnresolvedSymbol  Code = 3005
	SemaUnresolvedType    Code = 3006
	SemaTypeMismatch      Code = 3010
	SemaVoidBinding       Code = 3011
	SemaNotAStruct        Code = 3012
	SemaDuplicateMember   Code = 3013
	SemaMemberWithoutType Code = 3014
	SemaReturnMismatch    Code = 3015
	SemaNotCallable       Code = 3016
	SemaArgumentCount     Code = 3017
	SemaBreakOutsideLoop  Code = 3020
	SemaContinueOutside   Code = 3021
	SemaNoFunction        Code = 3022
	SemaNoActiveBlock     Code = 3023
	SemaNotAddressable    Code = 3024

	// Модули и зависимости
	ModInfo                Code = 4000
	ModNotFound            Code = 4001
	ModDuplicateDependency Code = 4002
	ModImportCollision     Code = 4003
	ModDuplicateModule     Code = 4004
	ModBuildFailed         Code = 4005
	ModDependencyFailed    Code = 4006

	// Бэкенд
	BackendInfo    Code = 5000
	BackendError   Code = 5001
	BackendVerify  Code = 5002
	BackendJIT     Code = 5003
	BackendAOT     Code = 5004
	BackendNoEntry Code = 5005

	// Ошибки проекта / I/O
	ProjInfo             Code = 6000
	ProjManifest         Code = 6001
	ProjLoadFile         Code = 6002
	ProjDecodeAST        Code = 6003
	ProjImportCycle      Code = 6004
	ProjUnresolvedImport Code = 6005
	ProjDuplicateName    Code = 6006
	ProjNoSources        Code = 6007
)

var codeDescription = map[Code]string{
	UnknownCode:            "Unknown error",
	SemaInfo:               "Semantic information",
	SemaError:              "Semantic error",
	SemaRedefinition:       "Symbol already defined in this scope",
	SemaUnresolvedSymbol:   "Unresolved symbol",
	SemaUnresolvedType:     "Unresolved type",
	SemaTypeMismatch:       "Type mismatch",
	SemaVoidBinding:        "Cannot bind a void value",
	SemaNotAStruct:         "Type is not a struct",
	SemaDuplicateMember:    "Duplicate struct member",
	SemaMemberWithoutType:  "Struct member needs a type or a value",
	SemaReturnMismatch:     "Return does not match the function type",
	SemaNotCallable:        "Value is not callable",
	SemaArgumentCount:      "Wrong number of arguments",
	SemaBreakOutsideLoop:   "break outside of a loop",
	SemaContinueOutside:    "continue outside of a loop",
	SemaNoFunction:         "Statement outside of a function",
	SemaNoActiveBlock:      "No active block",
	SemaNotAddressable:     "Value is not addressable",
	ModInfo:                "Module information",
	ModNotFound:            "Module not found",
	ModDuplicateDependency: "Module already used",
	ModImportCollision:     "Imported symbol collides with a visible symbol",
	ModDuplicateModule:     "Module already loaded",
	ModBuildFailed:         "Module build failed",
	ModDependencyFailed:    "Dependency failed to build",
	BackendInfo:            "Backend information",
	BackendError:           "Backend error",
	BackendVerify:          "Backend verification failed",
	BackendJIT:             "JIT execution failed",
	BackendAOT:             "Ahead-of-time emission failed",
	BackendNoEntry:         "No entry function",
	ProjInfo:               "Project information",
	ProjManifest:           "Invalid project manifest",
	ProjLoadFile:           "Cannot load file",
	ProjDecodeAST:          "Cannot decode AST",
	ProjImportCycle:        "Import cycle",
	ProjUnresolvedImport:   "Unresolved import",
	ProjDuplicateName:      "Two sources declare the same module",
	ProjNoSources:          "No sources found",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("MOD%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("BCK%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("PRJ%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
