package app

import (
	"github.com/vk/artiflow/internal/registry"
	"github.com/vk/artiflow/modules/env_vars"
	"github.com/vk/artiflow/modules/numbers"
)

// coreModules is the definitive list of all modules that are compiled into
// the artiflow binary.
var coreModules = []registry.Module{
	&env_vars.Module{},
	&numbers.Module{},
}
