// Package lead defines the submission, decision and reason types shared by
// every stage of the intake pipeline.
package lead
