// Package engine composes the three normalization steps for one genome:
// tbl2lst first, then generate_gff and create_gen side by side on the gene
// list it produced. It never imports pipeline, config, cli or cmd.
package engine
