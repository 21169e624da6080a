// Package archive turns a staging directory into a compressed distribution
// archive and reads such archives back.
//
// Two formats are supported: gzip-compressed tar (the default) and
// gzip-compressed newc cpio. Entries are written in lexical order with a fixed
// modification time and no owner information, so identical inputs always
// produce byte-identical archives. The archive is assembled in a temporary
// file next to its destination and only moved into place once complete.
package archive
