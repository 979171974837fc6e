package sqlinline

// Generation rows are always selected in the column order scanned by
// repo.scanGeneration.

const QAdmitGeneration = `--sql 524983fb-2828-4fb0-a616-176b1a284ac9
with
input as (
  select
    $1::uuid    as id,
    $2::uuid    as user_id,
    $3::text    as kind,
    $4::text    as prompt,
    nullif($5::text, '') as size,
    $6::int     as word_count,
    $7::numeric as cost,
    $8::text    as match_key,
    nullif($9::text, '') as correlation_id,
    $10::int    as lease_secs
),
reserved as (
  update user_balances b
  set reserved = b.reserved + (select cost from input),
      updated_at = now()
  where b.user_id = (select user_id from input)
    and b.balance - b.reserved >= (select cost from input)
  returning b.user_id
),
ins as (
  insert into generations (
    id, user_id, kind, prompt, size, word_count, cost, status, match_key, correlation_id,
    lease_expires_at, attempts
  )
  select
    id, user_id, kind, prompt, size, word_count, cost,
    case when lease_secs > 0 then 'generating' else 'pending' end,
    match_key, correlation_id,
    case when lease_secs > 0 then now() + make_interval(secs => lease_secs) end,
    case when lease_secs > 0 then 1 else 0 end
  from input
  where exists (select 1 from reserved) or (select cost from input) = 0
  returning id, created_at
)
select id, created_at from ins;
`

const QSelectGeneration = `--sql 0474bc3b-dd29-4338-8fa2-aa138400e876
select
  id, user_id, kind, prompt, coalesce(size, ''), word_count, cost::text, status,
  match_key, coalesce(correlation_id, ''), coalesce(result_url, ''), coalesce(error_message, ''),
  coalesce(archive_key, ''), attempts, submitted_at, charge_status, created_at, updated_at
from generations
where id = $1::uuid and user_id = $2::uuid;
`

const QSelectGenerationByID = `--sql 6ed1e8f9-9846-4fa4-b3f6-7a045f9664f2
select
  id, user_id, kind, prompt, coalesce(size, ''), word_count, cost::text, status,
  match_key, coalesce(correlation_id, ''), coalesce(result_url, ''), coalesce(error_message, ''),
  coalesce(archive_key, ''), attempts, submitted_at, charge_status, created_at, updated_at
from generations
where id = $1::uuid;
`

const QListGenerations = `--sql 6780dca5-529a-4b01-b668-191c35bbe130
select
  id, user_id, kind, prompt, coalesce(size, ''), word_count, cost::text, status,
  match_key, coalesce(correlation_id, ''), coalesce(result_url, ''), coalesce(error_message, ''),
  coalesce(archive_key, ''), attempts, submitted_at, charge_status, created_at, updated_at
from generations
where user_id = $1::uuid
  and ($2::text = '' or kind = $2::text)
order by created_at desc
limit $3::int;
`

const QClaimGeneration = `--sql 1d6542b0-e227-4ef0-a0a2-b80646945456
with next_gen as (
    select id
    from generations
    where status = 'pending'
       or (status = 'generating' and lease_expires_at < now())
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update generations g
    set status = 'generating',
        lease_expires_at = now() + make_interval(secs => $1::int),
        attempts = g.attempts + 1,
        updated_at = now()
    where g.id in (select id from next_gen)
    returning
      g.id, g.user_id, g.kind, g.prompt, coalesce(g.size, ''), g.word_count, g.cost::text, g.status,
      g.match_key, coalesce(g.correlation_id, ''), coalesce(g.result_url, ''), coalesce(g.error_message, ''),
      coalesce(g.archive_key, ''), g.attempts, g.submitted_at, g.charge_status, g.created_at, g.updated_at
)
select * from claimed;
`

const QMarkGenerationSubmitted = `--sql a48a5836-d89b-418b-95ec-5041c55b47ae
update generations
set submitted_at = now(), updated_at = now()
where id = $1::uuid and submitted_at is null;
`

const QCompleteGeneration = `--sql 8a39b379-21b1-43ee-84e3-397468a6d3ae
update generations
set status = 'completed',
    result_url = $2::text,
    lease_expires_at = null,
    updated_at = now()
where id = $1::uuid
  and status in ('pending', 'generating');
`

const QFailGeneration = `--sql f90774f8-03f2-4996-a872-a32bfc67ee6f
with
failed as (
  update generations
  set status = 'failed',
      error_message = $2::text,
      lease_expires_at = null,
      updated_at = now()
  where id = $1::uuid
    and status in ('pending', 'generating')
  returning user_id, cost
),
released as (
  update user_balances b
  set reserved = greatest(b.reserved - f.cost, 0),
      updated_at = now()
  from failed f
  where b.user_id = f.user_id
  returning b.user_id
)
select count(*)::int from failed;
`

const QSetGenerationArchiveKey = `--sql bab6cf5f-baf0-4b6f-8cc3-13797b759d61
update generations
set archive_key = $2::text, updated_at = now()
where id = $1::uuid;
`

const QListUnchargedGenerations = `--sql 27384add-d92f-4c4a-9c3e-5813901ee229
select
  id, user_id, kind, prompt, coalesce(size, ''), word_count, cost::text, status,
  match_key, coalesce(correlation_id, ''), coalesce(result_url, ''), coalesce(error_message, ''),
  coalesce(archive_key, ''), attempts, submitted_at, charge_status, created_at, updated_at
from generations
where status = 'completed'
  and (
    charge_status = 'failed'
    or (charge_status = 'none' and updated_at < now() - make_interval(secs => $2::int))
  )
order by updated_at asc
limit $1::int;
`
