package model

// Version is the chainfile release version.
const Version = "0.1.0"
