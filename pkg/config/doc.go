// Package config loads CLI configuration from CONVERGE_<KEY> environment
// variables overlaid by an optional YAML file. File values win; integer
// keys accept quoted numbers but reject anything non-numeric outright.
package config
