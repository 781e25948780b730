// Command redub is the CLI for the re-voicing pipeline: it queues source
// videos, inspects and maintains the job queue, drives the script review
// gate, and runs the processing daemon in the foreground.
package main
