// Package workflow drives jobs through the re-voicing pipeline.
//
// The manager runs two lanes concurrently. The ingest lane downloads source
// videos and transcribes them; the produce lane enhances transcripts, writes
// narration scripts, synthesizes speech, and assembles the final video. Each
// lane claims the oldest job whose status matches one of its stage start
// statuses, stamps it with a fresh run token, and executes the stage handler
// under that stage's timeout. A stage that outlives its timeout is abandoned:
// the run token is cleared so late writes from the abandoned run are dropped,
// and the job is marked failed.
//
// The script stage may park a job at the human review gate by setting its
// status itself; the manager only advances to a stage's done status when the
// handler left the processing status untouched.
package workflow
