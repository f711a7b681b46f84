// Package models contains shared data models used across the errtrack codebase.
package models
