// Package temporal defines the bitemporal vocabulary shared across the
// module: the valid-time/transaction-time interval, the record types
// held by the event store, and the Clock capability.
//
// Every stored fact carries an Interval. Both axes are measured in
// epoch milliseconds, and an open (current) interval ends at MaxDate.
// Reads only observe current rows; the pruner removes rows whose
// transaction time closed before the retention threshold.
package temporal
