package sqlinline

const QInsertAPIToken = `--sql 4d16546c-cd29-4129-bec2-ccc352a6c15f
insert into api_tokens (id, user_id, name, token, expires_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::timestamptz)
returning created_at, is_active;
`

const QListAPITokens = `--sql ecacce7b-7f1a-4c08-a3de-09cd11dace28
select id, user_id, name, token, created_at, last_used_at, expires_at, is_active
from api_tokens
where user_id = $1::uuid
order by created_at desc;
`

const QDeleteAPIToken = `--sql 2ca942a7-ec57-4bb8-906c-a1bb6e82dd21
delete from api_tokens
where id = $1::uuid and user_id = $2::uuid;
`

const QSelectAPIToken = `--sql 5c0e4f1a-1716-4e76-ab72-04cb11a7cb24
select id, user_id, name, token, created_at, last_used_at, expires_at, is_active
from api_tokens
where token = $1::text;
`

const QTouchAPIToken = `--sql 3f0e1385-a9f2-4c44-b563-e60fded08487
update api_tokens
set last_used_at = now()
where id = $1::uuid;
`
