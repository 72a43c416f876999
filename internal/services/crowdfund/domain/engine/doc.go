// Package engine executes campaign commands.
//
// The handler serializes commands per campaign, decides against the folded
// campaign state, and commits the resulting events and vault transfers in a
// single store call guarded by the expected sequence number. Only after the
// commit succeeds and the campaign lock is released are events published and
// post-commit hooks run, so anything a hook triggers observes the new state
// and may issue further commands against the same campaign.
package engine
