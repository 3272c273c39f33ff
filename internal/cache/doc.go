// 版权所有 2024 taskflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的任务结果缓存。

# 概述

Manager 封装 go-redis 客户端，负责连接生命周期、键前缀与后台健康检查；
ResultCache 在其之上按请求内容寻址，记忆成功的 TaskResult，
使相同角色、相同任务文本与相同上下文的请求可以直接复用上次输出。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete/Ping 与 JSON 便捷方法。
  - Config：缓存配置，包含地址、密码、连接池大小、默认 TTL 与键前缀。
  - ResultCache：TaskResult 缓存，仅存储成功结果，命中时在
    Metadata 中标记 cached=true。

# 错误语义

  - ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数。
  - ErrManagerClosed 表示管理器已关闭。
*/
package cache
