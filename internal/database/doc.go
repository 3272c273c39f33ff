// 版权所有 2024 taskflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接管理，供工作流运行历史存储使用。

# 概述

Open 根据 config.HistoryConfig 选择方言（sqlite、postgres、mysql）
建立连接，并交给 Pool 统一管理连接参数、后台探活、关闭与事务重试。

# 核心类型

  - Pool：持有 GORM DB 实例与底层 sql.DB，提供 DB()、Stats()、Ping()、
    Close() 与 Transact()。Transact 对锁冲突、序列化失败、断连等瞬时
    错误按 TxAttempts/TxBackoff 指数退避重试。
  - PoolConfig：连接数上限、连接生命周期、探活间隔与事务重试参数。
*/
package database
