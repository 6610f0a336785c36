package postgres

// Migrations — схема базы по версиям. Новые версии только дописываются в конец.
var Migrations = []Migration{
	{1, migration001Members},
	{2, migration002Channels},
	{3, migration003ScoreConfigs},
	{4, migration004ScoreLedger},
	{5, migration005Questions},
	{6, migration006Directory},
}

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255) NOT NULL DEFAULT '',
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    last_name VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(LOWER(username));
`

// Один канал — одна роль; канал вопросов в гильдии единственный.
var migration002Channels = `
CREATE TABLE IF NOT EXISTS channel_configs (
    id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    channel_id BIGINT NOT NULL,
    channel_type VARCHAR(16) NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_channel_configs_channel ON channel_configs(guild_id, channel_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_channel_configs_question ON channel_configs(guild_id) WHERE channel_type = 'question';
`

// weight и cooldown независимо необязательны: NULL значит «не задано на этом уровне».
var migration003ScoreConfigs = `
CREATE TABLE IF NOT EXISTS score_configs (
    id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    score_src VARCHAR(32) NOT NULL,
    channel_id BIGINT,
    weight DOUBLE PRECISION,
    cooldown INTEGER,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_score_configs_channel ON score_configs(guild_id, score_src, channel_id) WHERE channel_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_score_configs_guild ON score_configs(guild_id, score_src) WHERE channel_id IS NULL;
`

var migration004ScoreLedger = `
CREATE TABLE IF NOT EXISTS score_logs (
    id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    channel_id BIGINT NOT NULL,
    member_id BIGINT NOT NULL,
    score_src VARCHAR(32) NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_score_logs_cooldown ON score_logs(guild_id, channel_id, member_id, score_src, id DESC);
CREATE INDEX IF NOT EXISTS idx_score_logs_member ON score_logs(member_id, id);

CREATE TABLE IF NOT EXISTS user_scores (
    id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    member_id BIGINT NOT NULL,
    score_type VARCHAR(16) NOT NULL,
    score DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW(),
    UNIQUE (guild_id, member_id, score_type)
);
CREATE INDEX IF NOT EXISTS idx_user_scores_member ON user_scores(member_id);
`

// answers.question_id — ссылка без внешнего ключа.
var migration005Questions = `
CREATE TABLE IF NOT EXISTS questions (
    id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    channel_id BIGINT NOT NULL,
    member_id BIGINT NOT NULL,
    opened BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_questions_channel ON questions(guild_id, channel_id, id DESC);

CREATE TABLE IF NOT EXISTS answers (
    id BIGSERIAL PRIMARY KEY,
    question_id BIGINT NOT NULL,
    guild_id BIGINT NOT NULL,
    channel_id BIGINT NOT NULL,
    member_id BIGINT NOT NULL,
    message_id BIGINT NOT NULL,
    "like" INTEGER NOT NULL DEFAULT 0,
    dislike INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id);
CREATE INDEX IF NOT EXISTS idx_answers_message ON answers(guild_id, message_id);
`

var migration006Directory = `
CREATE TABLE IF NOT EXISTS chats (
    chat_id BIGINT PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS topics (
    chat_id BIGINT NOT NULL,
    thread_id BIGINT NOT NULL,
    name VARCHAR(255) NOT NULL,
    updated_at TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (chat_id, thread_id)
);
`
