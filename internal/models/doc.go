// Package models holds the statistical models dynfit can fit. Every model
// maps unit-hypercube fractions onto its own physical parameters and uses a
// flat prior over the box.
package models
