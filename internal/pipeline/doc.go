// Package pipeline fans genomes out to a bounded pool of workers that each
// run the engine on one genome at a time. Genomes share nothing, so a failed
// genome never stops the others.
package pipeline
