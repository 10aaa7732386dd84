package store

// Scores are stored as integer tenths of a point (scoring.Points).
// Timestamps are fixed-width UTC RFC 3339 text.
const schema = `
CREATE TABLE IF NOT EXISTS player (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    played_num INTEGER NOT NULL DEFAULT 0,
    total_score INTEGER NOT NULL DEFAULT 0,
    first_play_at TEXT NOT NULL,
    last_play_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS game (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    total_rounds INTEGER NOT NULL DEFAULT 0,
    start_at TEXT NOT NULL,
    end_at TEXT
);

CREATE TABLE IF NOT EXISTS game_player (
    game_id INTEGER NOT NULL,
    player_num INTEGER NOT NULL CHECK (player_num BETWEEN 1 AND 4),
    player_id INTEGER NOT NULL,
    PRIMARY KEY (game_id, player_num),
    UNIQUE (game_id, player_id),
    FOREIGN KEY (game_id) REFERENCES game(id),
    FOREIGN KEY (player_id) REFERENCES player(id)
);

CREATE TABLE IF NOT EXISTS round_result (
    game_id INTEGER NOT NULL,
    round_num INTEGER NOT NULL CHECK (round_num >= 1),
    player_id INTEGER NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (game_id, round_num, player_id),
    FOREIGN KEY (game_id) REFERENCES game(id),
    FOREIGN KEY (player_id) REFERENCES player(id)
);

CREATE TABLE IF NOT EXISTS player_result (
    game_id INTEGER NOT NULL,
    player_id INTEGER NOT NULL,
    total_score INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (game_id, player_id),
    FOREIGN KEY (game_id) REFERENCES game(id),
    FOREIGN KEY (player_id) REFERENCES player(id)
);

CREATE INDEX IF NOT EXISTS idx_game_end_at ON game(end_at);
CREATE INDEX IF NOT EXISTS idx_player_result_player_id ON player_result(player_id);
`
