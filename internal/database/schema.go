package database

// Each statement is executed separately: the MySQL driver rejects multi-statement
// strings unless multiStatements=true is set on the DSN.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(320) NOT NULL,
    username VARCHAR(64) NOT NULL,
    free_credit INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_users_email (email),
    CONSTRAINT chk_users_free_credit CHECK (free_credit >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    paddle_subscription_id VARCHAR(64) NOT NULL,
    plan VARCHAR(16) NOT NULL,
    status VARCHAR(32) NOT NULL,
    credits INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_subscriptions_user (user_id),
    CONSTRAINT chk_subscriptions_credits CHECK (credits >= 0),
    FOREIGN KEY (user_id) REFERENCES users(id)
)`,
	`CREATE TABLE IF NOT EXISTS logos (
    id CHAR(36) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    prompt TEXT NOT NULL,
    urls JSON NOT NULL,
    public TINYINT(1) NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_logos_user_created (user_id, created_at),
    KEY idx_logos_public_created (public, created_at),
    FOREIGN KEY (user_id) REFERENCES users(id)
)`,
	`CREATE TABLE IF NOT EXISTS favorites (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    logo_id CHAR(36) NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_favorites_user_logo (user_id, logo_id),
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (logo_id) REFERENCES logos(id) ON DELETE CASCADE
)`,
}
