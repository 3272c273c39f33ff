// Package dsl 提供 YAML/JSON 声明式工作流定义，
// 支持变量插值以及 dag、chain、fanout 三种执行模式，
// 并声明每个角色对应的命令行 Agent。
package dsl
