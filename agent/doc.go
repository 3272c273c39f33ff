// Copyright 2024 taskflow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package agent defines the collaborators the task executor talks to.

# Overview

An Agent turns a TaskRequest into a TaskResult. What happens inside (an LLM
call, an external CLI, output formatting, provider failover) is opaque to the
scheduler; the only contract is the single ExecuteTask method, which may
return an error or even panic. The executor contains both.

A Lookup maps a role name to an Agent and reports absence instead of failing.
Registry is the concurrent-safe implementation used by the CLI and tests.

# Implementations

  - Func: adapts a plain function returning the output text
  - CommandAgent: runs an external command (e.g. `claude -p`) per task,
    feeding the rendered prompt on stdin and reading the answer from stdout
*/
package agent
