// Package task binds a user function to the resources it consumes and
// produces. A Task knows how to tell whether it is ready (all inputs exist)
// or complete (all outputs exist), how to run itself by loading inputs,
// calling the function and saving outputs, and how to undo itself by
// deleting its outputs.
package task
