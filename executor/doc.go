// Copyright (c) taskflow Authors.
// Licensed under the MIT License.

/*
Package executor runs agent tasks with bounded concurrency.

# Overview

An Executor resolves each TaskRequest's role through an agent.Lookup and
runs it on a shared goroutine pool. Every operation returns exactly one
TaskResult per input, in input order, and never returns an error: a
missing agent, an agent error, a panic or a cancelled context all become
a failed TaskResult.

# Operations

  - ExecuteParallel: one unit per task, bounded only by the pool
  - ExecuteParallelWithLimit: at most limit tasks mid-flight
  - ExecuteBatched: consecutive chunks, each fully awaited
  - ExecuteAndAggregate: ExecuteParallel followed by a reducer
  - Submit / Future         : single-task async dispatch
  - ExecuteTask: the synchronous per-task algorithm

Optional collaborators are attached with functional options: a Prometheus
collector, an OpenTelemetry tracer, a result cache, a dispatch rate limit
and a per-task timeout.
*/
package executor
